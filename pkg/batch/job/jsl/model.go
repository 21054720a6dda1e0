package jsl

import "weatheretl/pkg/batch/job/core"

// Job represents the top-level structure of a JSL file.
type Job struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Flow        Flow           `yaml:"flow"`                  // A job must have a flow
	Listeners   []ComponentRef `yaml:"listeners,omitempty"`   // Job-level listeners
	Incrementer ComponentRef   `yaml:"incrementer,omitempty"` // JobParametersIncrementer の参照
}

// Flow represents a sequence of steps.
type Flow struct {
	StartElement string          `yaml:"start-element"` // The ID of the first step to execute
	Elements     map[string]Step `yaml:"elements"`      // Map of element ID to its step definition
}

// Step represents a single processing unit within a job.
// JSR352では、ステップはチャンク指向またはTasklet指向のいずれかです。
// 両方を同時に持つことはできません。
type Step struct {
	ID                        string                     `yaml:"id"`
	Description               string                     `yaml:"description,omitempty"`
	Reader                    ComponentRef               `yaml:"reader,omitempty"`    // チャンク指向の場合
	Processor                 ComponentRef               `yaml:"processor,omitempty"` // チャンク指向の場合 (省略可)
	Writer                    ComponentRef               `yaml:"writer,omitempty"`    // チャンク指向の場合
	Chunk                     *Chunk                     `yaml:"chunk,omitempty"`     // チャンク指向の場合のチャンク設定
	Tasklet                   ComponentRef               `yaml:"tasklet,omitempty"`   // Tasklet指向の場合
	Transitions               []Transition               `yaml:"transitions,omitempty"`
	Listeners                 []ComponentRef             `yaml:"listeners,omitempty"`
	ChunkListeners            []ComponentRef             `yaml:"chunk-listeners,omitempty"`
	ItemReadListeners         []ComponentRef             `yaml:"item-read-listeners,omitempty"`
	ItemProcessListeners      []ComponentRef             `yaml:"item-process-listeners,omitempty"`
	ItemWriteListeners        []ComponentRef             `yaml:"item-write-listeners,omitempty"`
	ExecutionContextPromotion *ExecutionContextPromotion `yaml:"execution-context-promotion,omitempty"`
}

// IsTasklet reports whether the step is tasklet-oriented.
func (s Step) IsTasklet() bool {
	return s.Tasklet.Ref != ""
}

// ComponentRef refers to a registered component (reader, processor, writer, tasklet, listener).
type ComponentRef struct {
	Ref        string            `yaml:"ref"`                  // The name of the component (e.g., "csvItemWriter")
	Properties map[string]string `yaml:"properties,omitempty"` // JSLから注入されるプロパティ
}

// Chunk defines chunk-oriented processing properties for a step.
type Chunk struct {
	ItemCount int `yaml:"item-count"` // 0 の場合は batch.chunk_size を使用
}

// Transition defines the next element to execute based on an exit status.
type Transition = core.Transition

// ExecutionContextPromotion は StepExecutionContext から JobExecutionContext へのプロモーション設定を定義します。
type ExecutionContextPromotion = core.ExecutionContextPromotion
