package main

import "github.com/danielcipriano1979/sentinel/cmd/sentinel/cmd"

func main() {
	cmd.Execute()
}
