package main

import "github.com/phishguard/phishguard/internal/app"

func main() {
	app.Execute()
}
