package orchestrator

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/KIT-MAMID/benchfleet/automation"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const mongodbAdminDatabase string = "admin"

// NodeStatus is what a server reports about its replica set role.
type NodeStatus struct {
	IsPrimary      bool
	ReplicaSetName string
}

type StatusChecker interface {
	Status(endpoint automation.Endpoint) (NodeStatus, error)
}

// MgoStatusChecker runs `isMaster` against a single server.
type MgoStatusChecker struct {
	Timeout time.Duration
}

func (c *MgoStatusChecker) Status(endpoint automation.Endpoint) (NodeStatus, error) {
	mgo.SetDebug(false)

	address := net.JoinHostPort(endpoint.Hostname, strconv.Itoa(endpoint.Port))
	sess, err := mgo.DialWithInfo(&mgo.DialInfo{
		Addrs:    []string{address},
		Direct:   true,
		Timeout:  c.Timeout,
		Database: mongodbAdminDatabase,
	})
	if err != nil {
		return NodeStatus{}, fmt.Errorf("could not connect to `%s`: %w", address, err)
	}
	defer sess.Close()

	// a secondary must answer too
	sess.SetMode(mgo.Monotonic, true)

	var isMasterRes bson.M
	if err := sess.Run("isMaster", &isMasterRes); err != nil {
		return NodeStatus{}, fmt.Errorf("mgo/Session.Run(\"isMaster\") against `%s` failed with: %w", address, err)
	}
	return statusFromIsMaster(isMasterRes), nil
}

func statusFromIsMaster(isMasterRes bson.M) NodeStatus {
	isPrimary, _ := isMasterRes["ismaster"].(bool)
	setName, _ := isMasterRes["setName"].(string)
	return NodeStatus{IsPrimary: isPrimary, ReplicaSetName: setName}
}
