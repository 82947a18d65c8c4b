package main

import "github.com/tcs-sec/vulncases/internal/cmd"

func main() {
	cmd.Execute()
}
