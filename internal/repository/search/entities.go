package search

// Tag is an entry of a nested tag list.
type Tag struct {
	Tag      string `mapstructure:"tag"`
	Uploader string `mapstructure:"uploader"`
}

// Named is a reference to another catalog object by name.
type Named struct {
	ID   int    `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// Dataset is the decoded source of a dataset hit.
type Dataset struct {
	DataID      int                `mapstructure:"data_id"`
	Name        string             `mapstructure:"name"`
	Version     int                `mapstructure:"version"`
	Status      string             `mapstructure:"status"`
	Format      string             `mapstructure:"format"`
	Licence     string             `mapstructure:"licence"`
	Description string             `mapstructure:"description"`
	Uploader    string             `mapstructure:"uploader"`
	Date        string             `mapstructure:"date"`
	Runs        int                `mapstructure:"runs"`
	Qualities   map[string]float64 `mapstructure:"qualities"`
	Tags        []Tag              `mapstructure:"tags"`
}

// SourceData is the dataset a task or run is defined on.
type SourceData struct {
	DataID int    `mapstructure:"data_id"`
	Name   string `mapstructure:"name"`
}

// Task is the decoded source of a task hit.
type Task struct {
	TaskID              int        `mapstructure:"task_id"`
	TaskType            Named      `mapstructure:"tasktype"`
	SourceData          SourceData `mapstructure:"source_data"`
	TargetFeature       string     `mapstructure:"target_feature"`
	EstimationProcedure Named      `mapstructure:"estimation_procedure"`
	Runs                int        `mapstructure:"runs"`
	Date                string     `mapstructure:"date"`
	Tags                []Tag      `mapstructure:"tags"`
}

// Flow is the decoded source of a flow hit.
type Flow struct {
	FlowID      int    `mapstructure:"flow_id"`
	Name        string `mapstructure:"name"`
	Version     int    `mapstructure:"version"`
	Description string `mapstructure:"description"`
	Uploader    string `mapstructure:"uploader"`
	Date        string `mapstructure:"date"`
	Runs        int    `mapstructure:"runs"`
	Tags        []Tag  `mapstructure:"tags"`
}

// RunFlow is the flow a run executed.
type RunFlow struct {
	FlowID int    `mapstructure:"flow_id"`
	Name   string `mapstructure:"name"`
}

// RunTask is the task a run solved.
type RunTask struct {
	TaskID     int        `mapstructure:"task_id"`
	TaskType   Named      `mapstructure:"tasktype"`
	SourceData SourceData `mapstructure:"source_data"`
}

// Evaluation is one measured value of a run.
type Evaluation struct {
	Measure string  `mapstructure:"evaluation_measure"`
	Value   float64 `mapstructure:"value"`
}

// Run is the decoded source of a run hit.
type Run struct {
	RunID       int          `mapstructure:"run_id"`
	Flow        RunFlow      `mapstructure:"run_flow"`
	Task        RunTask      `mapstructure:"run_task"`
	Uploader    string       `mapstructure:"uploader"`
	Date        string       `mapstructure:"date"`
	Evaluations []Evaluation `mapstructure:"evaluations"`
}

// Metric returns the value of a named evaluation measure.
func (r *Run) Metric(measure string) (float64, bool) {
	for _, e := range r.Evaluations {
		if e.Measure == measure {
			return e.Value, true
		}
	}
	return 0, false
}

// Measure is the decoded source of a measure hit.
type Measure struct {
	MeasureID   int      `mapstructure:"measure_id"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	MeasureType string   `mapstructure:"measure_type"`
	Min         *float64 `mapstructure:"min"`
	Max         *float64 `mapstructure:"max"`
	Unit        string   `mapstructure:"unit"`
}

// User is the decoded source of a user hit.
type User struct {
	UserID           int    `mapstructure:"user_id"`
	FirstName        string `mapstructure:"first_name"`
	LastName         string `mapstructure:"last_name"`
	Affiliation      string `mapstructure:"affiliation"`
	Country          string `mapstructure:"country"`
	Date             string `mapstructure:"date"`
	DatasetsUploaded int    `mapstructure:"datasets_uploaded"`
	FlowsUploaded    int    `mapstructure:"flows_uploaded"`
	RunsUploaded     int    `mapstructure:"runs_uploaded"`
}
