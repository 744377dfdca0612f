package version

import (
	"fmt"
	"runtime"
	"strconv"
	"time"
)

// Version is the application version. Can be overridden at build time via:
//
//	go build -ldflags "-X winsbygroup.com/keyverify/internal/version.Version=1.2.3"
var Version = "1.0"

// RepoURL is the project repository URL. Can be overridden at build time via:
//
//	go build -ldflags "-X winsbygroup.com/keyverify/internal/version.RepoURL=https://github.com/yourfork/keyverify"
var RepoURL = "https://github.com/winsbygroup/keyverify"

// Banner prints identifying information about the verifier.
func Banner() string {
	y := strconv.Itoa(time.Now().Year())
	copyright := "Copyright 2025-" + y + " Winsby Group LLC. All rights reserved."

	return fmt.Sprintf("%s\nKeyverify (v%s)\n%s\n", product(), Version, copyright)
}

// String is the one-line form used by the version command.
func String() string {
	return fmt.Sprintf("keyverify v%s (%s, %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func product() string {
	// http://patorjk.com/software/taag/#p=display&f=Standard&t=Keyverify
	// it includes back ticks, which makes this more difficult (replace with `+"`"+`).

	const s = `
  _  __                         _  __       
 | |/ /___ _   ___   _____ _ __(_)/ _|_   _ 
 | ' // _ \ | | \ \ / / _ \ '__| | |_| | | |
 | . \  __/ |_| |\ V /  __/ |  | |  _| |_| |
 |_|\_\___|\__, | \_/ \___|_|  |_|_|  \__, |
           |___/                      |___/ 
`
	return s
}
