package supervisor

import "os"

var osExit = os.Exit
