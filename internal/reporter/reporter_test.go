package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/ozwpan"
)

// sampleFrame decodes a Disconnect frame followed by an element that overruns its body.
func sampleFrame(t *testing.T) *core.OutputFrame {
	t.Helper()
	data := []byte{0x04, 0x00, 0x07, 0x00, 0x00, 0x00, 0x08, 0x00, 0x08, 0x05, 0x00}
	rec := ozwpan.NewRecorder()
	f, err := ozwpan.NewDissector().Decode(data, ozwpan.FrameMeta{Number: 3}, rec)
	require.NoError(t, err)

	src, _ := net.ParseMAC("00:11:22:33:44:55")
	dst, _ := net.ParseMAC("66:77:88:99:aa:bb")
	return &core.OutputFrame{
		Number:    3,
		Timestamp: time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
		Ethernet:  core.EthernetHeader{SrcMAC: src, DstMAC: dst, EtherType: 0x892e, VLANs: []uint16{7}},
		Labels: core.Labels{
			core.LabelVLAN:          "7",
			core.LabelOzwpanSummary: f.Summary,
		},
		Frame: f,
		Tree:  rec.Root,
	}
}

// decodedDoc is the part of Document that can be read back from JSON.
type decodedDoc struct {
	Number uint64         `json:"number"`
	Tree   []*ozwpan.Node `json:"tree"`
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"console", "json", "kafka", "yaml"}, Types())

	_, err := New(config.ReporterConfig{Type: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, core.ErrReporterNotFound)

	_, err = New(config.ReporterConfig{Type: "console", Options: map[string]any{"colour": true}}, nil)
	assert.Error(t, err, "unknown option must be rejected")

	assert.Panics(t, func() { Register("json", nil) })
}

func TestNewAllClosesOnFailure(t *testing.T) {
	var buf bytes.Buffer
	reporters, err := NewAll([]config.ReporterConfig{
		{Type: "console"},
		{Type: "json"},
	}, &buf)
	require.NoError(t, err)
	assert.Len(t, reporters, 2)
	assert.NoError(t, CloseAll(reporters))

	_, err = NewAll([]config.ReporterConfig{{Type: "console"}, {Type: "nope"}}, &buf)
	assert.ErrorIs(t, err, core.ErrReporterNotFound)
}

func TestConsoleTree(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(config.ReporterConfig{Type: "console", Options: map[string]any{"offsets": true}}, &buf)
	require.NoError(t, err)

	f := sampleFrame(t)
	require.NoError(t, r.Report(context.Background(), f))
	require.NoError(t, r.Flush(context.Background()))

	out := buf.String()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Frame 3: 2023-11-14T22:13:20.000000Z 00:11:22:33:44:55 -> 66:77:88:99:aa:bb vlan 7 OZWPAN Disconnect", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[0+11] "), lines[1])
	assert.Contains(t, out, "    [6+2] Element: Disconnect")
	assert.Contains(t, out, "[error [malformed-length] @8+3: ")
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	assert.NoError(t, r.Close())
}

func TestConsoleSummaryOnly(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewConsole(ConsoleOptions{SummaryOnly: true}, &buf)
	require.NoError(t, err)

	require.NoError(t, r.Report(context.Background(), sampleFrame(t)))
	require.NoError(t, r.Close())
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(config.ReporterConfig{Type: "json", Options: map[string]any{"tree": "false"}}, &buf)
	require.NoError(t, err)

	f := sampleFrame(t)
	require.NoError(t, r.Report(context.Background(), f))
	require.NoError(t, r.Report(context.Background(), f))
	require.NoError(t, r.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
	assert.Equal(t, float64(3), doc["number"])
	assert.NotContains(t, doc, "tree")

	frame := doc["frame"].(map[string]any)
	assert.Equal(t, "elements", frame["kind"])
	assert.Equal(t, "Disconnect", frame["summary"])
	diags := frame["diagnostics"].([]any)
	require.Len(t, diags, 1)
	assert.Equal(t, "malformed-length", diags[0].(map[string]any)["kind"])
	assert.Equal(t, "error", diags[0].(map[string]any)["severity"])

	eth := doc["ethernet"].(map[string]any)
	assert.Equal(t, "00:11:22:33:44:55", eth["src"])
}

func TestJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	r, err := NewJSON(JSONOptions{Path: path, Tree: true}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Report(context.Background(), sampleFrame(t)))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc decodedDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, uint64(3), doc.Number)
	require.NotEmpty(t, doc.Tree)
	assert.Equal(t, "ozwpan", doc.Tree[0].Abbrev)
}

func TestYAMLStream(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(config.ReporterConfig{Type: "yaml"}, &buf)
	require.NoError(t, err)

	f := sampleFrame(t)
	require.NoError(t, r.Report(context.Background(), f))
	require.NoError(t, r.Report(context.Background(), f))
	require.NoError(t, r.Close())

	dec := yaml.NewDecoder(&buf)
	count := 0
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			break
		}
		count++
		assert.Equal(t, 3, doc["number"])
		frame := doc["frame"].(map[string]any)
		assert.Equal(t, "Disconnect", frame["summary"])
		tree := doc["tree"].([]any)
		assert.Equal(t, "ozwpan", tree[0].(map[string]any)["abbrev"])
	}
	assert.Equal(t, 2, count)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

func TestKafkaReport(t *testing.T) {
	w := &fakeWriter{}
	r := newKafkaWithWriter(w, KafkaOptions{Topic: "frames"})

	f := sampleFrame(t)
	require.NoError(t, r.Report(context.Background(), f))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "00:11:22:33:44:55", string(msg.Key))
	assert.Equal(t, f.Timestamp, msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, kafka.Header{Key: "content-type", Value: []byte("application/json")}, msg.Headers[0])

	var doc decodedDoc
	require.NoError(t, json.Unmarshal(msg.Value, &doc))
	assert.Equal(t, uint64(3), doc.Number)
	assert.Empty(t, doc.Tree)

	assert.Error(t, r.Report(context.Background(), nil))

	w.err = errors.New("leader not available")
	assert.Error(t, r.Report(context.Background(), f))
	assert.Equal(t, uint64(1), r.reportedCount.Load())
	assert.Equal(t, uint64(1), r.errorCount.Load())

	require.NoError(t, r.Close())
	assert.True(t, w.closed)
}

func TestKafkaProtobufEncoding(t *testing.T) {
	w := &fakeWriter{}
	r := newKafkaWithWriter(w, KafkaOptions{Topic: "frames", Tree: true, Encoding: EncodingProtobuf})
	require.NoError(t, r.Report(context.Background(), sampleFrame(t)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "application/x-protobuf", string(w.msgs[0].Headers[0].Value))

	var st structpb.Struct
	require.NoError(t, proto.Unmarshal(w.msgs[0].Value, &st))
	m := st.AsMap()
	assert.EqualValues(t, 3, m["number"])
	tree, ok := m["tree"].([]any)
	require.True(t, ok)
	assert.Equal(t, "ozwpan", tree[0].(map[string]any)["abbrev"])

	_, err := New(config.ReporterConfig{Type: "kafka", Options: map[string]any{
		"brokers": "k:9092", "topic": "t", "encoding": "avro",
	}}, nil)
	assert.Error(t, err)
}

func TestKafkaOptions(t *testing.T) {
	_, err := New(config.ReporterConfig{Type: "kafka", Options: map[string]any{"topic": "t"}}, nil)
	assert.Error(t, err, "brokers required")

	_, err = New(config.ReporterConfig{Type: "kafka", Options: map[string]any{"brokers": []any{"k:9092"}}}, nil)
	assert.Error(t, err, "topic required")

	_, err = New(config.ReporterConfig{Type: "kafka", Options: map[string]any{
		"brokers": "k:9092", "topic": "t", "compression": "brotli",
	}}, nil)
	assert.Error(t, err)

	r, err := New(config.ReporterConfig{Type: "kafka", Options: map[string]any{
		"brokers":       "k1:9092,k2:9092",
		"topic":         "t",
		"batch_timeout": "250ms",
		"compression":   "lz4",
		"sasl":          config.SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"},
	}}, nil)
	require.NoError(t, err)
	k := r.(*Kafka)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, k.opts.Brokers)
	assert.Equal(t, 250*time.Millisecond, k.opts.BatchTimeout)
	assert.Equal(t, defaultBatchSize, k.opts.BatchSize)

	kw := k.writer.(*kafka.Writer)
	assert.Equal(t, kafka.Lz4, kw.Compression)
	assert.NotNil(t, kw.Transport.(*kafka.Transport).SASL)
	assert.NoError(t, r.Close())
}

func TestSASLMechanisms(t *testing.T) {
	for _, name := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		m, err := saslMechanism(config.SASLConfig{Mechanism: name, Username: "u", Password: "p"})
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
	}
	_, err := saslMechanism(config.SASLConfig{Mechanism: "GSSAPI"})
	assert.Error(t, err)
}

func TestTLSConfigErrors(t *testing.T) {
	_, err := tlsConfig(config.TLSConfig{Enabled: true, CACert: filepath.Join(t.TempDir(), "none.pem")})
	assert.Error(t, err)

	tc, err := tlsConfig(config.TLSConfig{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, tc.InsecureSkipVerify)
}
