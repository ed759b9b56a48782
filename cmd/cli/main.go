package main

import "github.com/angelospk/osdfxp/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
