package macaddr_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vepnet/tgen/core/macaddr"
)

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	uni, _ := net.ParseMAC("02:00:00:00:00:01")
	multi, _ := net.ParseMAC("01:00:5e:00:17:aa")
	zero := net.HardwareAddr{0, 0, 0, 0, 0, 0}
	mac64, _ := net.ParseMAC("02:00:00:ff:fe:00:00:01")

	assert.True(macaddr.IsValid(uni))
	assert.True(macaddr.IsUnicast(uni))
	assert.False(macaddr.IsMulticast(uni))

	assert.True(macaddr.IsValid(multi))
	assert.False(macaddr.IsUnicast(multi))
	assert.True(macaddr.IsMulticast(multi))

	assert.True(macaddr.IsValid(zero))
	assert.False(macaddr.IsUnicast(zero))

	assert.False(macaddr.IsValid(mac64))
	assert.False(macaddr.IsUnicast(mac64))
	assert.False(macaddr.IsMulticast(mac64))

	assert.True(macaddr.IsMulticast(macaddr.Broadcast))
}

func TestMakeRandomUnicast(t *testing.T) {
	assert := assert.New(t)

	for range 100 {
		a := macaddr.MakeRandomUnicast()
		assert.True(macaddr.IsUnicast(a), "%s", a)
		assert.Equal(byte(0x02), a[0]&0x03, "%s", a)
	}
}
