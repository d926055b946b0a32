package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var roleReconcileTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maplocate_admin_role_reconcile_total",
		Help: "User role reconciliations by outcome",
	},
	[]string{"result"},
)

var roleAssignmentChanges = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maplocate_admin_role_assignment_changes_total",
		Help: "Rows written to user_roles by reconciliation",
	},
	[]string{"op"},
)
