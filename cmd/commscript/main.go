package main

import "github.com/OpenTraceLab/OpenTraceComm/cmd/commscript/cmd"

func main() {
	cmd.Execute()
}
