package main

import "github.com/truesoul/outreach/services/dispatcher/internal/app"

func main() {
	app.Execute()
}
