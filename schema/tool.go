package schema

import "strings"

// Tool identifies the benchmark tool that produced a record and, through it,
// the comparison direction to apply.
type Tool string

// Known tools. The custom* and *-is-better names are generic; the rest mirror
// the runners whose output formats are commonly stored in the same history.
const (
	SmallerIsBetterTool       Tool = "smaller-is-better"
	LargerIsBetterTool        Tool = "larger-is-better"
	CustomSmallerIsBetterTool Tool = "customSmallerIsBetter"
	CustomBiggerIsBetterTool  Tool = "customBiggerIsBetter"
	GoTool                    Tool = "go"
	CargoTool                 Tool = "cargo"
	GoogleCppTool             Tool = "googlecpp"
	Catch2Tool                Tool = "catch2"
	JuliaTool                 Tool = "julia"
	BenchmarkDotNetTool       Tool = "benchmarkdotnet"
	BenchmarkJSTool           Tool = "benchmarkjs"
	PytestTool                Tool = "pytest"
	JMHTool                   Tool = "jmh"
)

// toolDirections maps every known tool to its comparison direction.
var toolDirections = map[Tool]Direction{
	SmallerIsBetterTool:       SmallerIsBetter,
	CustomSmallerIsBetterTool: SmallerIsBetter,
	GoTool:                    SmallerIsBetter,
	CargoTool:                 SmallerIsBetter,
	GoogleCppTool:             SmallerIsBetter,
	Catch2Tool:                SmallerIsBetter,
	JuliaTool:                 SmallerIsBetter,
	BenchmarkDotNetTool:       SmallerIsBetter,
	LargerIsBetterTool:        LargerIsBetter,
	CustomBiggerIsBetterTool:  LargerIsBetter,
	BenchmarkJSTool:           LargerIsBetter,
	PytestTool:                LargerIsBetter,
	JMHTool:                   LargerIsBetter,
}

// Direction returns the comparison direction of the tool and whether the tool is known.
func (t Tool) Direction() (Direction, bool) {
	d, ok := toolDirections[t]
	return d, ok
}

// Valid reports whether the tool is a known identifier.
func (t Tool) Valid() bool {
	_, ok := toolDirections[t]
	return ok
}

// ParseTool resolves a user supplied tool name, accepting the canonical
// identifiers case-insensitively.
func ParseTool(s string) (Tool, bool) {
	s = strings.TrimSpace(s)
	if t := Tool(s); t.Valid() {
		return t, true
	}
	for t := range toolDirections {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}
