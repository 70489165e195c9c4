package main

import "github.com/truesoul/outreach/services/engagement-monitor/internal/app"

func main() {
	app.Execute()
}
