// Package crib holds the working set of the calibration shell: the
// procedure defaults and the sensor collection, loaded from and saved to a
// named document.
package crib

import (
	"errors"
	"fmt"
	"time"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/procedure"
	"github.com/phorp/calcrib/internal/sensor"
	"github.com/phorp/calcrib/internal/utils"
)

const (
	dateKey           = "date"
	proceduresSection = "procedures"
	sensorsSection    = "sensors"
)

// ErrNoSensor is returned by operations on the selected sensor when the
// collection is empty
var ErrNoSensor = errors.New("no sensor selected")

// Crib owns the procedures and sensors of one document
type Crib struct {
	Procedures *procedure.Registry
	Sensors    *sensor.Collection

	env    *procedure.Env
	store  *document.Store
	logger *logging.Logger
	name   string
	saved  string
}

// New creates an empty crib with default procedures
func New(env *procedure.Env, store *document.Store, logger *logging.Logger) *Crib {
	if logger == nil {
		logger = logging.Global()
	}
	return &Crib{
		Procedures: procedure.NewDefaultRegistry(env),
		Sensors:    sensor.NewCollection(),
		env:        env,
		store:      store,
		logger:     logger.With("component", "crib"),
	}
}

func (c *Crib) now() time.Time {
	if c.env.Now == nil {
		return time.Now()
	}
	return c.env.Now()
}

// Today returns the current calendar date
func (c *Crib) Today() time.Time {
	return document.Date(c.now())
}

// DocumentName returns the name last saved or loaded, empty for the
// configured default
func (c *Crib) DocumentName() string {
	return c.name
}

// SavedAt returns the advisory save time read from the last loaded document
func (c *Crib) SavedAt() string {
	return c.saved
}

// NewSensor creates a sensor of type t, preps it with its procedure and
// selects it. Nothing is added when any step fails.
func (c *Crib) NewSensor(t sensor.Type, id string) (*sensor.Sensor, error) {
	proc, err := c.Procedures.Get(t)
	if err != nil {
		return nil, err
	}
	s, err := sensor.New(proc.Type(), id)
	if err != nil {
		return nil, err
	}
	if c.Sensors.Contains(s.ID) {
		return nil, fmt.Errorf("%w: %s", sensor.ErrDuplicateSensor, s.ID)
	}
	if err := proc.Prep(s); err != nil {
		return nil, fmt.Errorf("prep %s: %w", s.ID, err)
	}
	if err := c.Sensors.Add(s); err != nil {
		return nil, err
	}

	c.logger.Info("sensor created", "sensor_id", s.ID, "type", string(s.Type))
	return s, nil
}

// Selected returns the selected sensor
func (c *Crib) Selected() (*sensor.Sensor, error) {
	s, ok := c.Sensors.Selected()
	if !ok {
		return nil, ErrNoSensor
	}
	return s, nil
}

// ProcedureFor returns the procedure serving s
func (c *Crib) ProcedureFor(s *sensor.Sensor) (procedure.Procedure, error) {
	return c.Procedures.Get(s.Type)
}

// DeleteSensor removes a sensor by id
func (c *Crib) DeleteSensor(id string) error {
	if err := c.Sensors.Delete(id); err != nil {
		return err
	}
	c.logger.Info("sensor deleted", "sensor_id", sensor.NormalizeID(id))
	return nil
}

// Pack builds the document: the save date, then procedures, then sensors
func (c *Crib) Pack() *document.Section {
	doc := document.New()
	doc.SetString(dateKey, c.now().Format(utils.SaveStampLayout))
	c.Procedures.Pack(doc.Child(proceduresSection))
	c.Sensors.Pack(doc.Child(sensorsSection))
	return doc
}

// Unpack replaces the procedures and sensors with those of doc. The
// document is decoded into fresh objects first so a failure leaves the
// crib as it was. Loaded sensors are reconnected through their procedures.
func (c *Crib) Unpack(doc *document.Section) error {
	procs := procedure.NewDefaultRegistry(c.env)
	if sec, ok := doc.Lookup(proceduresSection); ok {
		if err := procs.Unpack(sec); err != nil {
			return err
		}
	}

	sensors := sensor.NewCollection()
	if sec, ok := doc.Lookup(sensorsSection); ok {
		var err error
		if sensors, err = sensor.UnpackCollection(sec, c.env.Sampling); err != nil {
			return err
		}
	}

	for _, s := range sensors.All() {
		proc, err := procs.Get(s.Type)
		if err != nil {
			return &document.DecodeError{Path: sensorsSection + "." + s.ID, Key: "type", Err: err}
		}
		if err := proc.Connect(s); err != nil {
			return fmt.Errorf("connect %s: %w", s.ID, err)
		}
	}

	c.Procedures = procs
	c.Sensors = sensors
	c.saved = doc.GetString(dateKey, "")
	return nil
}

// View returns the document text as it would be saved
func (c *Crib) View() []byte {
	return document.Marshal(c.Pack())
}

// Save writes the document under name, or under the current name when name
// is empty, and returns the file path
func (c *Crib) Save(name string) (string, error) {
	name = c.resolve(name)
	path, err := c.store.Save(name, c.Pack())
	if err != nil {
		c.logger.Error("save failed", "name", name, "error", err)
		return "", err
	}
	c.name = name
	c.logger.Info("crib saved", "path", path, "sensors", c.Sensors.Len())
	return path, nil
}

// Load replaces the crib with the named document and returns its path
func (c *Crib) Load(name string) (string, error) {
	name = c.resolve(name)
	doc, err := c.store.Load(name)
	if err != nil {
		return "", err
	}
	if err := c.Unpack(doc); err != nil {
		return "", fmt.Errorf("load %s: %w", c.store.Path(name), err)
	}
	c.name = name
	path := c.store.Path(name)
	c.logger.Info("crib loaded", "path", path, "sensors", c.Sensors.Len(), "saved", c.saved)
	return path, nil
}

// Archives lists the snapshots of the current document, oldest first
func (c *Crib) Archives() ([]string, error) {
	return c.store.Archives(c.name)
}

// ViewArchive returns the text of an archived snapshot
func (c *Crib) ViewArchive(path string) ([]byte, error) {
	doc, err := c.store.LoadArchive(path)
	if err != nil {
		return nil, err
	}
	return document.Marshal(doc), nil
}

// Path returns the file path a name resolves to
func (c *Crib) Path(name string) string {
	return c.store.Path(c.resolve(name))
}

func (c *Crib) resolve(name string) string {
	name = document.SanitizeName(name)
	if name == "" {
		return c.name
	}
	return name
}
