package main

import (
	"log"

	_ "modernc.org/sqlite"

	"github.com/eringen/inkwell"
	"github.com/eringen/inkwell/views"
)

func main() {
	cfg, err := inkwell.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	app := inkwell.New(cfg, views.Default(cfg))
	defer app.Close()

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
