package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"statuspage-monitor/internal/model"
)

// console prints a human-readable banner per incident.
type console struct {
	w io.Writer
}

func NewConsole() Sink { return &console{w: os.Stdout} }

func NewConsoleWriter(w io.Writer) Sink { return &console{w: w} }

func (c *console) Name() string { return "console" }

func (c *console) Push(_ context.Context, incidents []model.Incident) error {
	for _, in := range incidents {
		fmt.Fprintf(c.w, "[%s] NEW INCIDENT DETECTED\n", in.Detected.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(c.w, "Product: %s\n", in.Product)
		fmt.Fprintf(c.w, "Event: %s\n", in.Title)
		fmt.Fprintf(c.w, "Status: %s\n", in.Status)
		fmt.Fprintln(c.w, strings.Repeat("-", 80))
	}
	return nil
}
