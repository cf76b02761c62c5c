package caqueue

import (
	"encoding/json"

	"github.com/alpacahq/gopaca/log"
	"github.com/alpacahq/gopaca/rmq"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/careg"
	"github.com/equitylab/gocax/engine"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// executionRequest is the queue message shape. Batch submissions fan
// out to one message per action so consumers stay single-action.
type executionRequest struct {
	ActionID uuid.UUID `json:"action_id"`
}

// QueueWorker consumes execution requests from RMQ and runs each
// through the engine. Messages are acked on handler return; a failed
// execution is not redelivered since the failure is already persisted
// on the action and picked up by the retry sweep.
type QueueWorker struct {
	execute func(actionID uuid.UUID) (*engine.Result, error)
	consume func(consumerName, queueName string, consumeFunc func(msg []byte) error)
	queue   string
	done    chan struct{}
}

func NewQueueWorker() *QueueWorker {
	w := &QueueWorker{
		execute: careg.Engine().Execute,
		consume: rmq.Consume,
		queue:   careg.ActionRequests,
		done:    make(chan struct{}),
	}

	go w.work()

	return w
}

func (w *QueueWorker) work() {
	handler := func(msg []byte) error {
		req := &executionRequest{}

		if err := json.Unmarshal(msg, req); err != nil {
			log.Error("queue worker received malformed message", "body", string(msg), "error", err)
			return errors.Wrap(err, "malformed execution request")
		}

		res, err := w.execute(req.ActionID)
		if err != nil {
			// the engine already marked the action FAILED with the
			// structured error; nothing to redeliver
			log.Error(
				"queued corporate action failed",
				"action_id", req.ActionID,
				"class", caerrors.ClassOf(err),
				"error", err)
			return nil
		}

		log.Info(
			"queued corporate action executed",
			"action_id", req.ActionID,
			"equity_id", res.EquityID,
			"elapsed", res.EndTime.Sub(res.StartTime))

		return nil
	}

	w.consume("gocax", w.queue, handler)
	close(w.done)
}

// Stop prepares the routine for graceful shutdown.
func (w *QueueWorker) Stop() {
	select {
	case <-w.done:
	default:
	}
}

// Submit enqueues a single action for asynchronous execution.
func Submit(actionID uuid.UUID) error {
	buf, err := json.Marshal(&executionRequest{ActionID: actionID})
	if err != nil {
		return err
	}
	return rmq.Produce(careg.ActionRequests, buf)
}

// SubmitBatch enqueues a set of actions, one message each.
func SubmitBatch(actionIDs []uuid.UUID) error {
	for _, id := range actionIDs {
		if err := Submit(id); err != nil {
			return err
		}
	}
	return nil
}
