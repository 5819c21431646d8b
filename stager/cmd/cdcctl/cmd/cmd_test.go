package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/envelope"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ledger"
)

const doctorEnvelope = `{
	"schema": {"fields": [{"field": "after", "fields": [
		{"field": "doctor_id", "type": "int32"},
		{"field": "hired_on", "type": "int32", "name": "io.debezium.time.Date"},
		{"field": "fee", "type": "bytes", "name": "org.apache.kafka.connect.data.Decimal", "parameters": {"scale": "2"}}
	]}]},
	"payload": {"after": {"doctor_id": 7, "hired_on": 19000, "fee": "AfQ="}, "op": "c"}
}`

// execute runs the root command against a config file in dir.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	outputFormat = "table"
	profileName = ""
	objectsRoot = ""
	objectsStrict = false
	batchesRedisURL = ""
	inspectTable = ""
	seedDryRun = false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func tempConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"seed", "inspect", "objects", "batches", "profile", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, tempConfig(t), "version", "-o", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
}

func TestInspect_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doctor.json")
	require.NoError(t, os.WriteFile(path, []byte(doctorEnvelope), 0600))

	out, err := execute(t, tempConfig(t), "inspect", path, "-o", "json")
	require.NoError(t, err)

	var res struct {
		Op     string                 `json:"op"`
		Kinds  map[string]string      `json:"kinds"`
		Record map[string]interface{} `json:"record"`
		Errors []string               `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, "c", res.Op)
	assert.Equal(t, "2022-01-08", res.Record["hired_on"])
	assert.InDelta(t, 5.0, res.Record["fee"], 1e-9)
	assert.Equal(t, "decimal(2)", res.Kinds["fee"])
	assert.Equal(t, "date", res.Kinds["hired_on"])
	assert.Empty(t, res.Errors)
}

func TestInspect_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"payload": {"after": `), 0600))

	_, err := execute(t, tempConfig(t), "inspect", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejects")
}

func TestSeed_DryRun(t *testing.T) {
	out, err := execute(t, tempConfig(t), "seed", "--dry-run", "--tables", "doctors", "--count", "2", "--seed", "7")
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			lines = append(lines, scanner.Text())
		}
	}
	require.Len(t, lines, 2)

	for _, line := range lines {
		env, err := envelope.Decode([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, "doctors", env.Source.Table)
		assert.Contains(t, env.After, "doctor_id")
	}
}

func stageObject(t *testing.T, lines ...string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	prev := stagingFs
	stagingFs = fs
	t.Cleanup(func() { stagingFs = prev })

	require.NoError(t, fs.MkdirAll("/staging/debezium/doctors", 0755))
	body := strings.Join(lines, "\n") + "\n"
	require.NoError(t, afero.WriteFile(fs, "/staging/debezium/doctors/doctors_20240101T000000.json", []byte(body), 0644))
	require.NoError(t, afero.WriteFile(fs, "/staging/debezium/doctors/.doctors_x.tmp", []byte("partial"), 0644))
}

func TestObjects_List(t *testing.T) {
	stageObject(t, `{"doctor_id":1,"name":"Ada"}`)

	out, err := execute(t, tempConfig(t), "objects", "list", "doctors", "--root", "/staging", "-o", "json")
	require.NoError(t, err)

	var objects []objectInfo
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	require.Len(t, objects, 1)
	assert.Equal(t, "debezium/doctors/doctors_20240101T000000.json", objects[0].Key)
	assert.Positive(t, objects[0].Bytes)
}

func TestObjects_Check(t *testing.T) {
	stageObject(t,
		`{"doctor_id":1,"name":"Ada","experience_years":12}`,
		`{"doctor_id":null,"name":"Bob"}`,
		`{"doctor_id":3,"name":"Cy","experience_years":2.5}`,
	)
	key := "debezium/doctors/doctors_20240101T000000.json"

	out, err := execute(t, tempConfig(t), "objects", "check", key, "--root", "/staging", "-o", "json")
	require.NoError(t, err)

	var report objectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "doctors", report.Table)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Invalid)
	assert.Equal(t, 1, report.Violations["doctor_id: required column is null"])
	assert.Len(t, report.Violations, 2)

	_, err = execute(t, tempConfig(t), "objects", "check", key, "--root", "/staging", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 records")
}

func TestBatches(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := ledger.NewClientFromRedis(rdb, ledger.Options{})
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.RecordBatch(ctx, ledger.Entry{
		BatchID:  "b-1",
		Table:    "doctors",
		Key:      "debezium/doctors/doctors_1.json",
		Records:  10,
		Bytes:    512,
		Trigger:  "threshold",
		StagedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, []messaging.Checkpoint{{Topic: "postgres-source.public.doctors", Partition: 0, Offset: 9}}))

	url := "redis://" + mr.Addr()

	out, err := execute(t, tempConfig(t), "batches", "--redis-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "doctors")
	assert.Contains(t, out, "postgres-source.public.doctors[0]@9")

	out, err = execute(t, tempConfig(t), "batches", "doctors", "--redis-url", url, "-o", "json")
	require.NoError(t, err)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "b-1", entries[0].BatchID)
	assert.Equal(t, 10, entries[0].Records)
}

func TestProfile_SetUseList(t *testing.T) {
	cfgPath := tempConfig(t)

	_, err := execute(t, cfgPath, "profile", "set", "staging", "--redis-url", "redis://ledger:6379/1", "--staging-root", "/data")
	require.NoError(t, err)

	out, err := execute(t, cfgPath, "profile", "list", "-o", "json")
	require.NoError(t, err)
	var listed struct {
		Current  string                     `json:"current"`
		Profiles map[string]json.RawMessage `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, "staging", listed.Current)
	assert.Contains(t, listed.Profiles, "default")
	assert.Contains(t, listed.Profiles, "staging")

	_, err = execute(t, cfgPath, "profile", "use", "default")
	require.NoError(t, err)
	out, err = execute(t, cfgPath, "profile", "list")
	require.NoError(t, err)
	assert.Regexp(t, `\*\s+default`, out)

	_, err = execute(t, cfgPath, "profile", "use", "missing")
	require.Error(t, err)
}
