package main

import "github.com/Maxim80/devman-async-sms-mailings/cmd"

func main() {
	cmd.Execute()
}
