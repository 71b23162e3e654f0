package main

import (
	"os"
	"time"

	"github.com/seznam/jobslib-go"
	"github.com/seznam/jobslib-go/job"
)

func main() {
	registry := jobslib.NewRegistry()

	registry.Register("helloworld", job.Func(func(ctx *job.Context) error {
		select {
		case <-time.After(time.Second):
		case <-ctx.Context().Done():
			return ctx.Context().Err()
		}
		return nil
	}))

	os.Exit(jobslib.Main("helloworld", registry, os.Args[1:]))
}
