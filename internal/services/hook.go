package services

import "github.com/rxtech-lab/webhost-mcp/internal/models"

// Hook is used to perform actions when a deployment is observed on the ledger
type Hook interface {
	// CanHandle is used to check if the hook wants the event
	CanHandle(event models.DeploymentEvent) bool
	// OnDeploymentRecorded is called once per observed WebsiteDeployed event
	OnDeploymentRecorded(event models.DeploymentEvent) error
}
