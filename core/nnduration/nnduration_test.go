package nnduration_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vepnet/tgen/core/nnduration"
	"github.com/vepnet/tgen/core/testenv"
)

var makeAR = testenv.MakeAR

func TestMilliseconds(t *testing.T) {
	assert, _ := makeAR(t)

	var ms nnduration.Milliseconds
	assert.NoError(json.Unmarshal([]byte(`5274`), &ms))
	assert.Equal(nnduration.Milliseconds(5274), ms)
	assert.Equal(5274*time.Millisecond, ms.Duration())

	assert.NoError(json.Unmarshal([]byte(`"3s"`), &ms))
	assert.Equal(nnduration.Milliseconds(3000), ms)

	j, e := json.Marshal(ms)
	assert.NoError(e)
	assert.Equal(`3000`, string(j))

	assert.Error(json.Unmarshal([]byte(`"x"`), &ms))

	var zero nnduration.Milliseconds
	assert.Equal(100*time.Millisecond, zero.DurationOr(100))
	assert.Equal(3000*time.Millisecond, ms.DurationOr(100))
}

func TestNanoseconds(t *testing.T) {
	assert, _ := makeAR(t)

	var ns nnduration.Nanoseconds
	assert.NoError(json.Unmarshal([]byte(`"20us"`), &ns))
	assert.Equal(nnduration.Nanoseconds(20000), ns)
	assert.Equal(20*time.Microsecond, ns.Duration())
}
