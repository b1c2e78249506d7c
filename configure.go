package main

import (
	"github.com/urfave/cli"
)

func configure(app *cli.App) {
	serveCMD := makeServeCMD()
	cacheCMD := makeCacheCMD()
	warmCMD := makeWarmCMD()
	app.Commands = []cli.Command{serveCMD, cacheCMD, warmCMD}
}
