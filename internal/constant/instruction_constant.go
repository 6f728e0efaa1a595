package constant

// Instruction is one of the fixed analysis modes a user can select before
// uploading files. Unknown text never becomes an instruction.
type Instruction string

const (
	InstructionBattleMerit  Instruction = "战功差"
	InstructionPowerValue   Instruction = "势力值"
	InstructionContribution Instruction = "贡献差"
	InstructionGenericDiff  Instruction = "对比两个文件的差异"
)

// InstructionSpec is the static configuration record for an instruction:
// which CSV column carries the metric, which identifies the entity, and
// whether the result set should always be rendered as chart images.
type InstructionSpec struct {
	Key           Instruction
	MetricColumn  string
	EntityColumn  string
	ChartOriented bool
	Label         string
}

// GenericDiff reports whether this instruction is the free-form line diff
// that bypasses the tabular pipeline entirely.
func (s InstructionSpec) GenericDiff() bool {
	return s.Key == InstructionGenericDiff
}

var instructionTable = map[Instruction]InstructionSpec{
	InstructionBattleMerit: {
		Key:           InstructionBattleMerit,
		MetricColumn:  "战功",
		EntityColumn:  "成员",
		ChartOriented: true,
		Label:         "战功",
	},
	InstructionPowerValue: {
		Key:           InstructionPowerValue,
		MetricColumn:  "势力",
		EntityColumn:  "成员",
		ChartOriented: true,
		Label:         "势力",
	},
	InstructionContribution: {
		Key:           InstructionContribution,
		MetricColumn:  "贡献",
		EntityColumn:  "成员",
		ChartOriented: true,
		Label:         "贡献",
	},
	InstructionGenericDiff: {
		Key:   InstructionGenericDiff,
		Label: "差异",
	},
}

// instructionOrder fixes the listing order in user prompts.
var instructionOrder = []Instruction{
	InstructionBattleMerit,
	InstructionPowerValue,
	InstructionContribution,
	InstructionGenericDiff,
}

// LookupInstruction resolves user text to an instruction spec.
func LookupInstruction(text string) (InstructionSpec, bool) {
	spec, ok := instructionTable[Instruction(text)]
	return spec, ok
}

// SupportedInstructions returns the instruction keys in display order.
func SupportedInstructions() []string {
	keys := make([]string, 0, len(instructionOrder))
	for _, k := range instructionOrder {
		keys = append(keys, string(k))
	}
	return keys
}
