package main

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rt/engine/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListCapabilities prints what the software ray-tracing session supports.
func ListCapabilities(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	session := gpu.NewSoftwareSession(gpu.WithWorkers(ctx.Int("workers")))
	defer session.Release()

	logger.Notice("\n" + capabilityTable(session.Capabilities()))
	return nil
}

func capabilityTable(caps gpu.Capabilities) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Capability", "Value"})
	table.Append([]string{"Backend", caps.Backend})
	table.Append([]string{"Ray tracing tier", caps.Tier.String()})
	table.Append([]string{"Max recursion depth", fmt.Sprint(caps.MaxRecursionDepth)})
	table.Append([]string{"Default pipeline depth", fmt.Sprint(pipeline.DefaultMaxRecursionDepth)})
	table.Append([]string{"Shader identifier size", fmt.Sprintf("%d bytes", caps.ShaderIdentifierSize)})
	table.Append([]string{"Descriptor increment", fmt.Sprintf("%d bytes", caps.DescriptorIncrement)})
	table.Append([]string{"Descriptor capacity", fmt.Sprint(caps.DescriptorCapacity)})
	table.Append([]string{"Memory budget", fmt.Sprintf("%d MiB", caps.MemoryBudget>>20)})
	table.Append([]string{"Dispatch workers", fmt.Sprint(caps.Workers)})
	table.Render()
	return buf.String()
}
