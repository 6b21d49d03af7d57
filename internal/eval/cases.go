package eval

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Case is one question with the values its answer must contain.
type Case struct {
	Question       string   `yaml:"question" json:"question"`
	ExpectedValues []string `yaml:"expected_values" json:"expected_values"`
}

// caseFile is the YAML layout read by LoadCases.
type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// BuiltinCases returns the FHIR questions the graph was built to answer.
// Numeric answers are written as digits.
func BuiltinCases() []Case {
	return []Case{
		{
			Question:       "How many patients with the last name 'Rosenbaum' received multiple immunizations?",
			ExpectedValues: []string{"1"},
		},
		{
			Question:       "What are the full names of the patients treated by the practitioner named Josef Klein?",
			ExpectedValues: []string{"Lili Abbie Brekke", "Marinda Lindsay Veum", "Ana María Anita Barrios"},
		},
		{
			Question:       "Did the practitioner 'Arla Fritsch' treat more than one patient? If so, return the patient's full names.",
			ExpectedValues: []string{"Kerri Providencia Boyer", "Rogelio Clair Windler"},
		},
		{
			Question:       "What are the unique categories of substances patients are allergic to?",
			ExpectedValues: []string{"food", "environment", "medication", "other"},
		},
		{
			Question:       "How many patients were born in between the years 1990 and 2000?",
			ExpectedValues: []string{"12"},
		},
		{
			Question:       "How many patients have been immunized after January 1, 2022?",
			ExpectedValues: []string{"6"},
		},
		{
			Question:       "Which practitioner treated the most patients? Return their full name and how many patients they treated.",
			ExpectedValues: []string{"Vito Barton", "three"},
		},
		{
			Question:       "Is the patient ID 45 allergic to the substance 'shellfish'? If so, what city and state do they live in, and what is the full name of the practitioner who treated them?",
			ExpectedValues: []string{"East Longmeadow", "Cletus Paucek", "Massachusetts"},
		},
		{
			Question:       "How many patients are immunized for influenza?",
			ExpectedValues: []string{"14"},
		},
		{
			Question:       "What substances cause food allergies in this database?",
			ExpectedValues: []string{"eggs", "shellfish", "wheat"},
		},
	}
}

// LoadCases reads cases from a YAML file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewError(ErrCasesNotFound, fmt.Sprintf("evaluation cases not found: %s", path))
		}
		return nil, types.WrapError(ErrCasesInvalid, fmt.Sprintf("failed to read evaluation cases: %s", path), err)
	}

	var file caseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.WrapError(ErrCasesInvalid, fmt.Sprintf("failed to parse evaluation cases: %s", path), err)
	}
	if len(file.Cases) == 0 {
		return nil, types.NewError(ErrCasesInvalid, fmt.Sprintf("no cases in %s", path))
	}
	for i, c := range file.Cases {
		if err := c.Validate(); err != nil {
			return nil, types.WrapError(ErrCasesInvalid, fmt.Sprintf("case %d", i+1), err)
		}
	}
	return file.Cases, nil
}

// Validate checks that the case has a question and at least one value.
func (c Case) Validate() error {
	if strings.TrimSpace(c.Question) == "" {
		return fmt.Errorf("question is required")
	}
	if len(c.ExpectedValues) == 0 {
		return fmt.Errorf("expected_values is required")
	}
	return nil
}

// Limit returns the first n cases. n <= 0 or past the end returns all.
func Limit(cases []Case, n int) []Case {
	if n <= 0 || n >= len(cases) {
		return cases
	}
	return cases[:n]
}

// Variants returns the lowercase forms value may take in an answer. A
// number from zero to ten matches as digits or as a word.
func Variants(value string) []string {
	v := strings.ToLower(strings.TrimSpace(value))
	if n, ok := rag.NumberWords[v]; ok {
		return []string{v, strconv.Itoa(n)}
	}
	if n, err := strconv.Atoi(v); err == nil {
		for word, num := range rag.NumberWords {
			if num == n {
				return []string{v, word}
			}
		}
	}
	return []string{v}
}

// Missing returns the expected values absent from answer.
func Missing(answer string, expected []string) []string {
	text := strings.ToLower(answer)
	var missing []string
	for _, value := range expected {
		found := false
		for _, variant := range Variants(value) {
			if variant != "" && strings.Contains(text, variant) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, value)
		}
	}
	return missing
}
