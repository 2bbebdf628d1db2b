package gpu

import "sync"

type command interface {
	name() string
}

type buildCommand struct {
	desc BuildAccelerationStructureDesc
}

type barrierCommand struct {
	buffer Buffer
}

type pipelineCommand struct {
	pipeline RayTracingPipeline
}

type dispatchCommand struct {
	desc DispatchRaysDesc
}

func (buildCommand) name() string    { return "BuildRaytracingAccelerationStructure" }
func (barrierCommand) name() string  { return "ResourceBarrierUAV" }
func (pipelineCommand) name() string { return "SetPipelineState" }
func (dispatchCommand) name() string { return "DispatchRays" }

// commandList records commands until Submit takes them.
type commandList struct {
	mu       sync.Mutex
	commands []command
}

var _ CommandList = &commandList{}

func (l *commandList) record(c command) {
	l.mu.Lock()
	l.commands = append(l.commands, c)
	l.mu.Unlock()
}

func (l *commandList) take() []command {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.commands
	l.commands = nil
	return out
}

func (l *commandList) BuildRaytracingAccelerationStructure(desc BuildAccelerationStructureDesc) {
	desc.Inputs.Geometries = append([]GeometryDesc(nil), desc.Inputs.Geometries...)
	l.record(buildCommand{desc: desc})
}

func (l *commandList) ResourceBarrierUAV(buf Buffer) {
	l.record(barrierCommand{buffer: buf})
}

func (l *commandList) SetPipelineState(p RayTracingPipeline) {
	if p == nil {
		return
	}
	l.record(pipelineCommand{pipeline: p})
}

func (l *commandList) DispatchRays(desc DispatchRaysDesc) {
	l.record(dispatchCommand{desc: desc})
}

func (l *commandList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.commands)
}
