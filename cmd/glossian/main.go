package main

import (
	"os"

	"horse.fit/glossian/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
