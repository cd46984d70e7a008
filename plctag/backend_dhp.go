package plctag

import (
	"plctag/cip"
	"plctag/config"
	"plctag/pccc"
	"plctag/scheduler"
	"plctag/session"
)

// newDHPBackend builds a DH+-bridged PCCC backend: a ControlLogix acting
// as a gateway onto a DH+ network, reached by wrapping the PCCC frame
// with a DH+ routing header before the Execute PCCC body is built. The
// bridged device's own family decides the address dialect: an "A:s:d"/
// "B:s:d" final hop to a PLC-5 target uses PLC-5 typed-logical, and to
// an SLC/MicroLogix target uses protected-typed-logical, so this backend
// keys off cfg.Family same as the non-bridged native backends do.
func newDHPBackend(cfg *config.Config, sess *session.Session, sched *scheduler.Scheduler, route cip.Route) (Backend, error) {
	dhp := &pccc.RouteDHP{
		DestLink: route.DHPPort,
		DestNode: route.DHPDest,
		SrcLink:  route.DHPPort,
		SrcNode:  route.DHPSrc,
	}
	dialect := dialectSLC
	if cfg.Family == config.FamilyPLC5 {
		dialect = dialectPLC5
	}
	return newPCCCBackendCommon(cfg, sess, sched, dialect, dhp)
}
