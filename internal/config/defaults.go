package config

const (
	defaultOutputDir        = "~/.local/share/registrar/documents"
	defaultPhotoDir         = "~/.local/share/registrar/photos"
	defaultStateDir         = "~/.local/share/registrar/state"
	defaultLogDir           = "~/.local/share/registrar/logs"
	defaultDatabaseDriver   = "postgres"
	defaultDatabaseHost     = "localhost"
	defaultDatabasePort     = 5432
	defaultDatabaseName     = "root_db"
	defaultDatabaseUser     = "postgres"
	defaultSSLMode          = "disable"
	defaultStudentTable     = "student_details"
	defaultCourseTable      = "student_courses_details"
	defaultQueryTimeout     = 30
	defaultNocoDBTimeout    = 15
	defaultPrecision        = 2
	defaultInstitution      = "ATRIA UNIVERSITY"
	defaultAddress          = "ASKB Campus, 1st Main Road, Anandnagar, Hebbal, Bengaluru-560024"
	defaultEstablished      = "(Established Under Karnataka Act No. 22 of 2021)"
	defaultNumberPrefix     = "AU"
	defaultLevel            = "UG"
	defaultMedium           = "English"
	defaultProgramDuration  = 4
	defaultPhotoWidth       = 68
	defaultPhotoHeight      = 85
	defaultPhotoTimeout     = 10
	defaultBatchConcurrency = 1
	defaultUnitTimeout      = 60
	defaultRetryAttempts    = 4
	defaultRetryBaseDelayMS = 500
	defaultRetryMaxDelayMS  = 8000
	defaultLockTimeout      = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			PhotoDir:  defaultPhotoDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Database: Database{
			Driver:       defaultDatabaseDriver,
			SSLMode:      defaultSSLMode,
			StudentTable: defaultStudentTable,
			CourseTable:  defaultCourseTable,
			QueryTimeout: defaultQueryTimeout,
		},
		NocoDB: NocoDB{
			StudentTable:   defaultStudentTable,
			CourseTable:    defaultCourseTable,
			RequestTimeout: defaultNocoDBTimeout,
		},
		Grading: Grading{
			Precision: defaultPrecision,
		},
		Documents: Documents{
			Institution:     defaultInstitution,
			Address:         defaultAddress,
			Established:     defaultEstablished,
			NumberPrefix:    defaultNumberPrefix,
			Level:           defaultLevel,
			Medium:          defaultMedium,
			ProgramDuration: defaultProgramDuration,
			Programs:        defaultPrograms(),
			PhotoWidth:      defaultPhotoWidth,
			PhotoHeight:     defaultPhotoHeight,
			PhotoTimeout:    defaultPhotoTimeout,
		},
		Batch: Batch{
			Concurrency: defaultBatchConcurrency,
			UnitTimeout: defaultUnitTimeout,
		},
		Sync: Sync{
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
			LockTimeout:      defaultLockTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultPrograms() map[string]string {
	return map[string]string{
		"FOU":  "Foundation Year",
		"BDes": "B-Design",
		"LS":   "Life Sciences",
		"ES":   "Energy Sciences",
		"eMob": "e-Mobility",
		"IT":   "Interactive Technologies",
		"DT":   "Digital Transformation",
		"BBA":  "BBA",
	}
}
