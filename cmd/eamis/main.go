package main

import (
	"eamis-catcher/cmd/eamis/commands"
	"eamis-catcher/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
