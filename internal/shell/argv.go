package shell

import (
	"strconv"

	"remotefs/internal/config"
)

// Argv builds the client command line for a server. POSIX clients never get
// the password on the command line; it is typed at the prompt instead.
func Argv(srv config.ServerConfig, flavor Flavor) []string {
	bins := srv.Binaries
	port := strconv.Itoa(srv.Port)

	if srv.IsWindows() {
		bin := orDefault(bins.Plink, "plink.exe")
		args := []string{bin, "-ssh"}
		if flavor == FlavorSFTP {
			bin = orDefault(bins.PSFTP, "psftp.exe")
			args = []string{bin}
		}
		args = append(args, "-P", port, "-l", srv.User)
		if srv.Auth.Method == "password" && srv.Auth.Password != "" {
			args = append(args, "-pw", srv.Auth.Password)
		}
		if srv.Auth.Method == "key" && srv.Auth.KeyPath != "" {
			args = append(args, "-i", srv.Auth.KeyPath)
		}
		return append(args, srv.Host)
	}

	var args []string
	switch flavor {
	case FlavorSFTP:
		args = []string{orDefault(bins.SFTP, "sftp"), "-P", port}
	default:
		args = []string{orDefault(bins.SSH, "ssh"), "-tt", "-p", port}
	}
	switch srv.Auth.Method {
	case "key":
		if srv.Auth.KeyPath != "" {
			args = append(args, "-i", srv.Auth.KeyPath)
		}
	case "password":
		args = append(args, "-o", "PreferredAuthentications=keyboard-interactive,password", "-o", "PubkeyAuthentication=no")
	}
	return append(args, srv.User+"@"+srv.Host)
}

// PromptFor returns the prompt marker that signals the client is ready.
func PromptFor(srv config.ServerConfig, flavor Flavor) string {
	switch {
	case flavor == FlavorSFTP && srv.IsWindows():
		return PromptPSFTP
	case flavor == FlavorSFTP:
		return PromptSFTP
	case srv.PromptContains != "":
		return srv.PromptContains
	default:
		return PromptShell
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
