package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/sentinelgraph/cyquel/internal/schema"
	"github.com/sentinelgraph/cyquel/pkg/cyquel"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: cyquel <command> [args]")
		fmt.Println("Commands:")
		fmt.Println("  demo                        - Run a demo translation with sample data")
		fmt.Println("  translate <schema.yaml> <q> - Translate a Cypher query to KQL")
		fmt.Println("  validate <schema.yaml> <q> <kql> - Validate a candidate KQL string")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		runDemo()
	case "translate":
		if len(os.Args) < 4 {
			fmt.Println("Usage: cyquel translate <schema.yaml> <cypher-query>")
			os.Exit(1)
		}
		runTranslate(os.Args[2], os.Args[3])
	case "validate":
		if len(os.Args) < 5 {
			fmt.Println("Usage: cyquel validate <schema.yaml> <cypher-query> <candidate-kql>")
			os.Exit(1)
		}
		runValidate(os.Args[2], os.Args[3], os.Args[4])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func loadSchema(path string) *schema.Map {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read schema: %v", err)
	}
	sm, err := schema.Load(data)
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}
	return sm
}

func runTranslate(schemaPath, query string) {
	sm := loadSchema(schemaPath)

	result, err := cyquel.Translate(query, sm, cyquel.DefaultConfig())
	if err != nil {
		log.Fatalf("Translation failed: %v", err)
	}

	fmt.Println(result.KQL)

	if len(result.Warnings) > 0 {
		fmt.Fprintln(os.Stderr, "\nWarnings:")
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", w.Code, w.Message)
		}
	}
	if len(result.RuleLog) > 0 {
		fmt.Fprintln(os.Stderr, "\nOptimizer rule log:")
		for _, r := range result.RuleLog {
			fmt.Fprintf(os.Stderr, "  iter %d: %s — %s\n", r.Iteration, r.Rule, r.Description)
		}
	}
}

func runValidate(schemaPath, query, candidateKQL string) {
	sm := loadSchema(schemaPath)

	result, err := cyquel.Validate(query, candidateKQL, sm, cyquel.DefaultConfig())
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	if !result.Valid {
		os.Exit(1)
	}
}

func runDemo() {
	fmt.Println("=== Cyquel Cypher-to-KQL Demo ===")
	fmt.Println()

	schemaDoc := []byte(`
node_mappings:
  Device:
    table: DeviceInfo
    key: DeviceId
    time_column: TimeGenerated
    properties:
      id: DeviceId
      name: DeviceName
      os: OSPlatform
    indexed: [id]
  User:
    table: IdentityInfo
    key: AccountUpc
    properties:
      id: AccountUpc
      name: AccountDisplayName

relationship_mappings:
  LOGGED_INTO:
    table: DeviceLogonEvents
    source: AccountUpc
    target: DeviceId
    properties:
      timestamp: TimeGenerated

options:
  default_time_window: 7d
  case_insensitive_text_ops: true
  unmapped_property_policy: error
`)

	sm, err := schema.Load(schemaDoc)
	if err != nil {
		log.Fatalf("Failed to load demo schema: %v", err)
	}

	query := `MATCH (u:User)-[r:LOGGED_INTO]->(d:Device) WHERE u.id = 42 RETURN d.name, d.os`
	fmt.Printf("Query:\n%s\n\n", query)

	result, err := cyquel.Translate(query, sm, cyquel.DefaultConfig())
	if err != nil {
		log.Fatalf("Translation failed: %v", err)
	}

	fmt.Println("=== Translated KQL ===")
	fmt.Println(result.KQL)
	fmt.Println()
	fmt.Printf("Plan nodes: %d\n", result.PlanNodes)
	fmt.Printf("Optimizer rule applications: %d\n", len(result.RuleLog))

	fmt.Println("\n=== Validating the translated output against itself ===")
	validation, err := cyquel.Validate(query, result.KQL, sm, cyquel.DefaultConfig())
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}
	fmt.Printf("Valid: %t (score %.2f)\n", validation.Valid, validation.Score)

	fmt.Println("\n=== Demo Complete ===")
}
