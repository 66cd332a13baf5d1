// Package drivers assembles the backend-type table of the built-in drivers.
package drivers

import (
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/drivers/ever"
	"github.com/piwi3910/msolo/internal/drivers/fivegrso"
	"github.com/piwi3910/msolo/internal/drivers/onap"
	"github.com/piwi3910/msolo/internal/drivers/osm"
	"github.com/piwi3910/msolo/internal/models"
)

// Builtin returns the table of every driver shipped with the gateway.
// EVER serves RAN orchestrators and is also accepted as an NFVO.
func Builtin() driver.Table {
	return driver.Table{
		models.NFVO: {
			osm.BackendType:      osm.New,
			onap.BackendType:     onap.New,
			ever.BackendType:     ever.New,
			fivegrso.BackendType: fivegrso.New,
		},
		models.RANO: {
			ever.BackendType: ever.New,
		},
	}
}
