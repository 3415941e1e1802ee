package analysis

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/repoharvest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOutput(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "r0001.ck")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestAggregate_SumsClassMetrics(t *testing.T) {
	dir := writeOutput(t, map[string]string{
		ClassTable: "file,class,type,cbo,wmc,dit,noc,rfc,lcom,totalMethodsQty,totalFieldsQty,variablesQty,loc\n" +
			"A.java,A,class,1,4,1,0,3,2,2,1,5,10\n" +
			"B.java,B,class,2,6,2,1,5,0,3,2,0,20\n" +
			"C.java,C,class,3,2,1,2,4,4,1,0,1,30\n",
		MethodTable: "file,class,method,wmc\nA.java,A,m1,1\nA.java,A,m2,3\n",
		FieldTable:  "file,class,field\n",
	})

	m := (&CSVAggregator{}).Aggregate(dir)

	assert.Equal(t, 3, m.TotalClasses)
	assert.InDelta(t, 6.0, m.CBO, 1e-9)
	assert.InDelta(t, 6.0, m.LCOM, 1e-9)
	assert.InDelta(t, 4.0, m.DIT, 1e-9)
	assert.InDelta(t, 60.0, m.LOC, 1e-9)
	assert.Equal(t, 6, m.TotalMethods)
	assert.Equal(t, 3, m.TotalFields)
	assert.Equal(t, 6, m.TotalVariables)
	assert.InDelta(t, 4.0, m.AvgWMC, 1e-9)
	assert.InDelta(t, 1.0, m.AvgNOC, 1e-9)
	assert.InDelta(t, 4.0, m.AvgRFC, 1e-9)
	assert.InDelta(t, 2.0, m.AvgCC, 1e-9)
	assert.InDelta(t, 2.0, m.MeanCBO(), 1e-9)

	assert.NoDirExists(t, dir)
}

func TestAggregate_ZeroOnUnusableOutput(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"missing class table", map[string]string{MethodTable: "wmc\n1\n"}},
		{"empty class table", map[string]string{ClassTable: ""}},
		{"missing required column", map[string]string{ClassTable: "class,cbo,lcom,dit\nA,1,1,1\n"}},
		{"non numeric cell", map[string]string{ClassTable: "class,cbo,lcom,dit,loc\nA,1,1,1,10\nB,x,1,1,10\n"}},
		{"ragged rows", map[string]string{ClassTable: "class,cbo,lcom,dit,loc\nA,1,1\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeOutput(t, tt.files)
			m := (&CSVAggregator{}).Aggregate(dir)
			assert.Equal(t, schema.QualityMetrics{}, m)
			assert.NoDirExists(t, dir)
		})
	}
}

func TestAggregate_HeaderOnly(t *testing.T) {
	dir := writeOutput(t, map[string]string{ClassTable: "class,cbo,lcom,dit,loc\n"})
	m := (&CSVAggregator{}).Aggregate(dir)
	assert.Equal(t, schema.QualityMetrics{}, m)
}

func TestAggregate_NoStaleValuesBetweenRepositories(t *testing.T) {
	agg := &CSVAggregator{}
	first := agg.Aggregate(writeOutput(t, map[string]string{ClassTable: "class,cbo,lcom,dit,loc\nA,5,5,5,5\n"}))
	assert.Equal(t, 1, first.TotalClasses)

	second := agg.Aggregate(filepath.Join(t.TempDir(), "never-written.ck"))
	assert.Equal(t, schema.QualityMetrics{}, second)
}

func TestAggregate_LogsUnusableMethodTable(t *testing.T) {
	dir := writeOutput(t, map[string]string{
		ClassTable: "file,class,type,cbo,wmc,dit,noc,rfc,lcom,totalMethodsQty,totalFieldsQty,variablesQty,loc\n" +
			"A.java,A,class,1,4,1,0,3,2,2,1,5,10\n",
		MethodTable: "file,class,method,wmc\nA.java,A,m1,many\n",
	})
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := (&CSVAggregator{Logger: logger}).Aggregate(dir)

	assert.Equal(t, 1, m.TotalClasses)
	assert.InDelta(t, 1.0, m.CBO, 1e-9)
	assert.Zero(t, m.AvgCC)
	assert.Contains(t, logs.String(), "unusable method table")
	assert.Contains(t, logs.String(), "column wmc")
	assert.NoDirExists(t, dir)
}
