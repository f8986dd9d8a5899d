package skill

import "testing"

func TestSubstituteVariables(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{
			name:     "two variables",
			template: "{a} and {b}",
			vars:     map[string]any{"a": "X", "b": "Y"},
			want:     "X and Y",
		},
		{
			name:     "unknown left verbatim",
			template: "{a} {b}",
			vars:     map[string]any{"a": "yes"},
			want:     "yes {b}",
		},
		{
			name:     "string array joins with comma space",
			template: "tickers: {tickers}",
			vars:     map[string]any{"tickers": []string{"NVDA", "AMD", "INTC"}},
			want:     "tickers: NVDA, AMD, INTC",
		},
		{
			name:     "any array joins with comma space",
			template: "{items}",
			vars:     map[string]any{"items": []any{"a", 2, true}},
			want:     "a, 2, true",
		},
		{
			name:     "boolean stringifies",
			template: "deep: {deep}",
			vars:     map[string]any{"deep": true},
			want:     "deep: true",
		},
		{
			name:     "number stringifies",
			template: "limit {limit}",
			vars:     map[string]any{"limit": 10},
			want:     "limit 10",
		},
		{
			name:     "float without trailing zeros",
			template: "{rate}",
			vars:     map[string]any{"rate": 2.5},
			want:     "2.5",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			vars:     map[string]any{"a": "X"},
			want:     "plain text",
		},
		{
			name:     "repeated placeholder",
			template: "{t} vs {t}",
			vars:     map[string]any{"t": "AAPL"},
			want:     "AAPL vs AAPL",
		},
		{
			name:     "nil renders empty",
			template: "[{v}]",
			vars:     map[string]any{"v": nil},
			want:     "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubstituteVariables(tt.template, tt.vars)
			if got != tt.want {
				t.Errorf("SubstituteVariables() = %q, want %q", got, tt.want)
			}
		})
	}
}
