package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/dataflow"
	"github.com/meikuraledutech/dataflow/graphviz"
	"github.com/meikuraledutech/dataflow/postgres"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Wire up the postgres implementation behind the Repository interface.
	var repo dataflow.Repository = postgres.New(pool)

	if err := repo.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Build a graph in memory ───────────────────────────────────────
	m := dataflow.New()
	m.Subscribe(func(s *dataflow.Snapshot) {
		fmt.Printf("snapshot: %d nodes, %d edges, order %v\n", len(s.Nodes), len(s.Edges), s.TopoOrder)
	})

	fetch := mustAddNode(m, dataflow.Position{X: 0, Y: 0})
	parse := mustAddNode(m, dataflow.Position{X: 200, Y: 0})
	report := mustAddNode(m, dataflow.Position{X: 400, Y: 0})

	must(m.UpdateConfig(parse, dataflow.NodeConfig{
		Name:     "parse rows",
		Function: dataflow.Function{Kind: "js", Code: "fetch.body.split('\\n')", Format: "Expression"},
	}))
	must(m.AddEdge(fetch, parse, "fetch"))
	must(m.AddEdge(parse, report, "")) // named after the target: "node2"
	must(m.AddEdge(fetch, report, "source"))

	// A back edge would close a cycle and is rejected.
	if err := m.AddEdge(report, fetch, ""); err != nil {
		fmt.Printf("rejected: %v\n", err)
	}

	if err := m.Validate(); err != nil {
		log.Fatalf("validate: %v", err)
	}
	def, src := m.Compile()

	// ── Persist ───────────────────────────────────────────────────────
	flow, err := repo.CreateFlow(ctx, &dataflow.Flow{Name: "report-pipeline", Compiled: def, Source: src})
	if err != nil {
		log.Fatalf("create flow: %v", err)
	}
	fmt.Println("\nflow created:")
	printJSON(flow)

	// ── Reload and edit ───────────────────────────────────────────────
	stored, err := repo.GetFlow(ctx, flow.ID)
	if err != nil {
		log.Fatalf("get flow: %v", err)
	}
	reloaded, err := dataflow.Load(stored.Compiled, stored.Source)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	must(reloaded.DeleteNode(parse))
	stored.Compiled, stored.Source = reloaded.Compile()
	if err := repo.UpdateFlow(ctx, stored); err != nil {
		log.Fatalf("update flow: %v", err)
	}
	fmt.Println("\nafter deleting the parse node:")
	printJSON(stored.Compiled)

	dot, err := graphviz.Render(stored.Compiled)
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Println("\n" + dot)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := repo.DeleteFlow(ctx, flow.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("flow deleted")
}

func mustAddNode(m *dataflow.Manager, pos dataflow.Position) dataflow.NodeID {
	id, err := m.AddNode(pos)
	must(err)
	return id
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
