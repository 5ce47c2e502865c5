package tripdata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/helper"
)

// Service identifies one of the taxi fleets published by the TLC.
type Service string

const (
	ServiceYellow Service = "yellow"
	ServiceGreen  Service = "green"
)

// AllServices returns the supported services in a stable order.
func AllServices() []Service {
	return []Service{ServiceYellow, ServiceGreen}
}

func ParseService(s string) (Service, error) {
	switch Service(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceYellow:
		return ServiceYellow, nil
	case ServiceGreen:
		return ServiceGreen, nil
	}
	return "", errors.Errorf("unsupported service %q (expected one of: yellow, green)", s)
}

// ParseServicesCsv converts 'yellow,green' into a slice of Service values.
func ParseServicesCsv(s string) ([]Service, error) {
	tokens := helper.CsvToStringSliceTrimSpaces(s)
	retval := make([]Service, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		svc, err := ParseService(t)
		if err != nil {
			return nil, err
		}
		retval = append(retval, svc)
	}
	if len(retval) == 0 {
		return nil, errors.New("no services supplied")
	}
	return retval, nil
}

// Granularity selects the warehouse partition naming policy.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly" // one table per (service, year, month)
	GranularityYearly  Granularity = "yearly"  // one table per (service, year)
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case GranularityMonthly:
		return GranularityMonthly, nil
	case GranularityYearly:
		return GranularityYearly, nil
	}
	return "", errors.Errorf("unsupported granularity %q (expected one of: monthly, yearly)", s)
}

// UnitOfWork identifies one (service, year, month) job.
// It is immutable once constructed and derives the source URL, local artifact
// paths and target table name without performing any I/O.
type UnitOfWork struct {
	Service Service
	Year    int
	Month   int
}

func NewUnitOfWork(service Service, year int, month int) (UnitOfWork, error) {
	if _, err := ParseService(string(service)); err != nil {
		return UnitOfWork{}, err
	}
	if year < 2009 || year > 9999 { // TLC publishes trip data from 2009 onwards.
		return UnitOfWork{}, errors.Errorf("year %v out of range", year)
	}
	if month < 1 || month > 12 {
		return UnitOfWork{}, errors.Errorf("month %v out of range 1..12", month)
	}
	return UnitOfWork{Service: service, Year: year, Month: month}, nil
}

func (u UnitOfWork) String() string {
	return fmt.Sprintf("%v %04d-%02d", u.Service, u.Year, u.Month)
}

// Key returns a stable identifier usable as a map key.
func (u UnitOfWork) Key() string {
	return fmt.Sprintf("%v_%04d_%02d", u.Service, u.Year, u.Month)
}

// SourceURL returns the remote location of the raw monthly file.
func (u UnitOfWork) SourceURL() string {
	return fmt.Sprintf(constants.SourceUrlTemplate, u.Service, u.Year, u.Month)
}

// FileName returns the base name of the raw artifact, e.g. yellow_tripdata_2020-01.parquet.
func (u UnitOfWork) FileName() string {
	return fmt.Sprintf("%v_tripdata_%04d-%02d%v", u.Service, u.Year, u.Month, constants.RawArtifactSuffix)
}

// ArtifactPath returns the local path of the raw artifact below root.
func (u UnitOfWork) ArtifactPath(root string) string {
	return filepath.Join(root, string(u.Service), strconv.Itoa(u.Year), u.FileName())
}

// CanonicalPath returns the local path of the normalized, compressed artifact.
func (u UnitOfWork) CanonicalPath(root string) string {
	return u.ArtifactPath(root) + constants.CanonicalSuffix
}

// TableName applies the partition naming policy for the supplied granularity.
// Yearly partitions share one table per (service, year); monthly partitions own
// one table per unit. Names for different partitions never collide.
func (u UnitOfWork) TableName(g Granularity) string {
	if g == GranularityYearly {
		return fmt.Sprintf("%v_tripdata_%04d", u.Service, u.Year)
	}
	return fmt.Sprintf("%v_tripdata_%04d_%02d", u.Service, u.Year, u.Month)
}

var artifactNameRegexp = regexp.MustCompile(`^([a-z]+)_tripdata_([0-9]{4})-([0-9]{2})\.parquet(\.gz)?$`)

// ParseArtifactName recovers a UnitOfWork from an artifact base name such as
// green_tripdata_2020-05.parquet.gz.
func ParseArtifactName(name string) (UnitOfWork, error) {
	m := artifactNameRegexp.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return UnitOfWork{}, errors.Errorf("file name %q is not a trip data artifact", name)
	}
	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	return NewUnitOfWork(Service(m[1]), year, month)
}
