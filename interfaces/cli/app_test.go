package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func TestApp_Version(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(output, "dynamic-mcp version") {
		t.Errorf("version output missing 'dynamic-mcp version', got: %s", output)
	}
}

func TestApp_Help(t *testing.T) {
	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"serve", "validate", "tools", "export-schema"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_Validate(t *testing.T) {
	path := writeFile(t, "server.yaml", `
server:
  name: test-server
  port: 9000
tools:
  external:
    - name: weather
      description: Current weather
      endpoint_url: https://api.example.com/weather
      parameters:
        type: object
        properties:
          city: {type: string}
        required: [city]
notification:
  endpoints:
    - url: https://hooks.example.com/tools
      enabled: true
`)

	output, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate command failed: %v", err)
	}
	for _, want := range []string{"valid", "test-server", "127.0.0.1:9000", "weather", "Webhook endpoints: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("validate output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_ValidateInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		args    []string
	}{
		{
			name:    "bad mode",
			content: "server:\n  mode: carrier-pigeon\n",
		},
		{
			name: "bad external method",
			content: `
tools:
  external:
    - name: bad
      endpoint_url: https://api.example.com
      http_method: PATCH
`,
		},
		{
			name: "unschemaable parameters",
			content: `
tools:
  external:
    - name: bad
      endpoint_url: https://api.example.com
      parameters:
        type: object
        properties:
          when: {type: [string, integer]}
`,
		},
		{
			name:    "missing env var in strict mode",
			content: "server:\n  name: ${DMCP_CLI_TEST_UNSET}\n",
			args:    []string{"--strict"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "server.yaml", tt.content)
			args := append([]string{"validate", path}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApp_ValidateMissingFile(t *testing.T) {
	if _, err := execute(t, "validate", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := execute(t, "validate"); err == nil {
		t.Error("expected error without a path")
	}
}

func TestApp_ToolsList(t *testing.T) {
	output, err := execute(t, "tools", "list", "-v")
	if err != nil {
		t.Fatalf("tools list failed: %v", err)
	}
	for _, want := range []string{"echo", "add_numbers", "get_item", "calculate", "- a: integer (required)"} {
		if !strings.Contains(output, want) {
			t.Errorf("tools list output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_ToolsListJSON(t *testing.T) {
	manifest := writeFile(t, "tools.yaml", `
tools:
  - name: forecast
    description: Forecast
    endpoint_url: https://api.example.com/forecast
`)
	path := writeFile(t, "server.yaml", `
tools:
  expose_routes: false
  manifest: `+manifest+`
  demo:
    - name: greet
      description: Greets
      prefix: Hello
`)

	output, err := execute(t, "tools", "list", "-c", path, "--json")
	if err != nil {
		t.Fatalf("tools list failed: %v", err)
	}

	var views []struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(output), &views); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}

	names := map[string]bool{}
	for _, v := range views {
		names[v.Name] = true
	}
	if !names["greet"] || !names["forecast"] || !names["echo"] {
		t.Errorf("names = %v", names)
	}
	if names["get_item"] {
		t.Error("routes should not be exposed when expose_routes is false")
	}
}

func TestApp_ExportSchema(t *testing.T) {
	output, err := execute(t, "export-schema")
	if err != nil {
		t.Fatalf("export-schema failed: %v", err)
	}

	var schemas map[string]map[string]any
	if err := json.Unmarshal([]byte(output), &schemas); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	add, ok := schemas["add_numbers"]
	if !ok {
		t.Fatalf("missing add_numbers schema: %v", schemas)
	}
	if add["type"] != "object" {
		t.Errorf("add_numbers schema type = %v", add["type"])
	}
}

func TestApp_ExportSchemaToFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "schemas.json")

	output, err := execute(t, "export-schema", "-o", outputPath)
	if err != nil {
		t.Fatalf("export-schema failed: %v", err)
	}
	if !strings.Contains(output, "exported") {
		t.Errorf("output missing confirmation, got: %s", output)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("schema file not written: %v", err)
	}
	if !json.Valid(data) {
		t.Error("schema file is not valid JSON")
	}
}

func TestApp_ServeRejectsInvalidFlags(t *testing.T) {
	if _, err := execute(t, "serve", "--mode", "smoke-signal"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := execute(t, "serve", "--port", "70000"); err == nil {
		t.Error("expected error for out-of-range port")
	}
}
