package buildinfo

const Graffiti = " _____ _____ _____ _   _   ___   _     _____ \n/  ___|_   _|  __ \\ \\ | | / _ \\ | |   /  ___|\n\\ `--.  | | | |  \\/  \\| |/ /_\\ \\| |   \\ `--. \n `--. \\ | | | | __| . ` ||  _  || |    `--. \\\n/\\__/ /_| |_| |_\\ \\ |\\  || | | || |___/\\__/ /\n\\____/ \\___/ \\____|_| \\_/\\_| |_/\\_____|____/ \n\n"

var (
	BuildTag string = "v0.0.0"
	Name     string = "SIGNALS"
	Time     string = ""
)

type buildinfo struct{}

func (buildinfo) Tag() string {
	return BuildTag
}

func (buildinfo) Name() string {
	return Name
}

func (buildinfo) Time() string {
	return Time
}

var Info buildinfo
