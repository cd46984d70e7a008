package plctag

import (
	"fmt"
	"strings"

	"plctag/config"
	"plctag/scheduler"
	"plctag/session"
)

// newBackend selects and constructs the Backend implementation cfg
// addresses: a special `@raw`/`@tags`/`@udt/<id>`/`system/...` name
// picks a fixed-function backend regardless of family; otherwise the
// family decides between CIP symbolic access, native PCCC (PLC-5/SLC/
// MicroLogix), DH+-bridged PCCC, and Logix-PCCC-compatibility mode.
func newBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler) (Backend, error) {
	if cfg.Protocol == config.ProtocolModbusTCP {
		return newModbusBackend(cfg)
	}

	switch {
	case cfg.Name == "@raw":
		return newRawBackend(cfg, sess, sched)
	case cfg.Name == "@tags" || strings.HasSuffix(cfg.Name, ".@tags"):
		return newTagListBackend(cfg, sess, sched)
	case strings.HasPrefix(cfg.Name, "@udt/"):
		return newUDTBackend(cfg, sess, sched)
	case strings.HasPrefix(cfg.Name, "system/"):
		return newSystemBackend(cfg.Name)
	}

	if cfg.Family.UsesPCCC() {
		route, err := sess.RoutePath()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPath, err)
		}
		switch {
		case cfg.Family == config.FamilyLogixPCCC:
			return newLogixPCCCBackend(cfg, sess, sched)
		case route.IsDHP:
			return newDHPBackend(cfg, sess, sched, route)
		case cfg.Family == config.FamilyPLC5:
			return newPCCC5Backend(cfg, sess, sched)
		default:
			return newSLCBackend(cfg, sess, sched)
		}
	}

	return newCIPBackend(cfg, sess, sched)
}
