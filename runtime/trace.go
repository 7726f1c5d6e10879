package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
)

type serializedValue struct {
	Preview      string
	Value        json.RawMessage `json:",omitempty"`
	Destinations []int
}

// serialize tries to serialize as much as it can of v.
func serialize(v interface{}) (sv *serializedValue) {
	sv = new(serializedValue)
	sv.Preview = fmt.Sprint(v)
	data, err := json.Marshal(v)
	if err == nil {
		sv.Value = data
	}
	return
}

// Trace records every diffuse as a JSON line to w.
func (i *Instance) Trace(w io.Writer) error {
	i.traceLock.Lock()
	defer i.traceLock.Unlock()
	if i.traceOutput != nil {
		return errors.New("routeman-runtime: trace: already tracing")
	}
	i.traceOutput = w
	return nil
}

func (i *Instance) record(d *Diffuse1, dests []int) {
	i.traceLock.Lock()
	defer i.traceLock.Unlock()
	if i.traceOutput == nil {
		return
	}
	sv := serialize(d.Value)
	sv.Destinations = dests
	buf := new(bytes.Buffer)
	err := json.NewEncoder(buf).Encode(sv)
	if err != nil {
		zap.S().Errorw("trace: encode", "diffuse", d, "err", err)
		return
	}
	_, err = io.Copy(i.traceOutput, buf)
	if err != nil {
		zap.S().Errorw("trace: write", "diffuse", d, "err", err)
	}
}
