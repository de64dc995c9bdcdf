package main

import "github.com/dh1tw/streamgraph/cmd"

func main() {
	cmd.Execute()
}
