// internal/platform/config/help.go
package config

import (
	"fmt"
	"io"
	"runtime"
)

// LongHelp es la descripción del comando raíz.
const LongHelp = `droidsweep - Android forensic triage

Parses the files of an Android acquisition bundle (dumpsys, getprop,
process lists, packages, settings, tombstones, backups...) and checks
them against STIX2 / MVT indicator feeds.

Indicator feeds are mirrored from a remote index into <data-dir>/indicators
and refreshed at most once a day unless download-iocs is run explicitly.

Exit status: 0 clean, 1 failure, 2 bad usage or configuration,
3 analysis found detections of level MEDIUM or higher.`

// Examples se muestra bajo el uso del comando raíz.
const Examples = `  Mirror the public indicator feeds:
    droidsweep download-iocs

  Analyze an acquisition directory:
    droidsweep check-bundle ./acquisition-2024-05-01

  Analyze a zipped bundle with an encrypted backup, JSON only:
    droidsweep check-bundle bundle.zip -p 1234 -q

  Analyze a single file:
    droidsweep check-file dumpsys.txt -m dumpsys_accessibility,dumpsys_adb

  Use a local feed directory:
    droidsweep check-bundle ./acq -i ./my-iocs`

// EnvHelp lista las variables de entorno. Los flags tienen prioridad.
const EnvHelp = `ENVIRONMENT VARIABLES:
  DROIDSWEEP_DATA_DIR=/path          State files and downloaded feeds
  DROIDSWEEP_INDICATORS_DIR=/path    Indicators directory
  DROIDSWEEP_WORKERS=8               Modules run in parallel
  DROIDSWEEP_TIMEOUT=60              Global timeout in seconds
  DROIDSWEEP_SCHEDULER=weighted      priority, weighted or fifo
  DROIDSWEEP_MODULES=getprop,mounts  Module allowlist
  DROIDSWEEP_BACKUP_PASSWORD=...     Password of encrypted backups
  DROIDSWEEP_OUTPUT_DIR=/path        Output directory
  DROIDSWEEP_NO_TABLE=true           Disable table output
  DROIDSWEEP_METRICS_FILE=/path      Prometheus textfile output
  DROIDSWEEP_INDEX_URL=https://...   Remote feed index
  DROIDSWEEP_GITHUB_API=https://...  GitHub API base
  DROIDSWEEP_GITHUB_TOKEN=...        GitHub token (GITHUB_TOKEN also works)
  DROIDSWEEP_AUTO_CHECK=false        Skip the daily indicator check
  DROIDSWEEP_LOG_LEVEL=debug         debug, info, warn, error`

// PrintVersion escribe la información de build en w.
func PrintVersion(w io.Writer, version, commit, date string) {
	fmt.Fprintf(w, "droidsweep %s\n", version)
	fmt.Fprintf(w, "  Commit:  %s\n", commit)
	fmt.Fprintf(w, "  Built:   %s\n", date)
	fmt.Fprintf(w, "  Go:      %s\n", runtime.Version())
}
