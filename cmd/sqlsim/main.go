package main

import "github.com/sqlsimproject/sqlsim/cmd/sqlsim/cmd"

func main() {
	cmd.Execute()
}
