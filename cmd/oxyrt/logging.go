package main

import (
	"github.com/Carmen-Shannon/oxy-rt/engine/log"
	"github.com/urfave/cli"
)

var logger = log.New("cli")

func setupLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.GlobalString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}
