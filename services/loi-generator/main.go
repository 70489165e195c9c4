package main

import "github.com/truesoul/outreach/services/loi-generator/internal/app"

func main() {
	app.Execute()
}
