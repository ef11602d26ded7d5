package main

import "github.com/BrandonDHaskell/facegate/internal/cli"

func main() {
	cli.Execute()
}
