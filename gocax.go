package gocax

var (
	Sha1hash string
	Version  string = "dev"
)
