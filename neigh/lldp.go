package neigh

import (
	"encoding/json"
	"strconv"

	"github.com/vepnet/tgen/port"
)

// lldpcli -f json0 output: every node is an array of objects, regardless of
// cardinality, which keeps decoding uniform across lldpd versions.
type lldp0Doc struct {
	LLDP []struct {
		Interface []lldp0Interface `json:"interface"`
	} `json:"lldp"`
}

type lldp0Interface struct {
	Name    string `json:"name"`
	Chassis []struct {
		ID    []lldp0Value `json:"id"`
		Name  []lldp0Value `json:"name"`
		Descr []lldp0Value `json:"descr"`
	} `json:"chassis"`
	Port []struct {
		ID  []lldp0Value `json:"id"`
		TTL []struct {
			TTL string `json:"ttl"`
		} `json:"ttl"`
	} `json:"port"`
}

type lldp0Value struct {
	Value string `json:"value"`
}

func first(vs []lldp0Value) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Value
}

// parseLLDP extracts neighbor entries for one interface from lldpcli json0 output.
func parseLLDP(data []byte, ifname string) (entries []port.LLDPEntry, e error) {
	var doc lldp0Doc
	if e = json.Unmarshal(data, &doc); e != nil {
		return nil, e
	}
	for _, l := range doc.LLDP {
		for _, intf := range l.Interface {
			if intf.Name != ifname {
				continue
			}
			var en port.LLDPEntry
			for _, ch := range intf.Chassis {
				en.ChassisID = first(ch.ID)
				en.SystemName = first(ch.Name)
				en.SystemDesc = first(ch.Descr)
				break
			}
			for _, p := range intf.Port {
				en.PortID = first(p.ID)
				if len(p.TTL) > 0 {
					en.TTL, _ = strconv.Atoi(p.TTL[0].TTL)
				}
				break
			}
			if en.ChassisID == "" && en.PortID == "" {
				continue
			}
			entries = append(entries, en)
		}
	}
	return entries, nil
}
