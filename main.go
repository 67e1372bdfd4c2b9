package main

import "github.com/boozedog/guestlog/cmd"

func main() {
	cmd.Execute()
}
