package main

import "github.com/holelung/Face-recognition-attendance-check/cmd"

func main() {
	cmd.Execute()
}
