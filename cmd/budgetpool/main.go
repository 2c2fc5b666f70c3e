package main

import "github.com/budgetpool/budgetpool/internal/cli"

func main() {
	cli.Execute()
}
