package config

var (
	ConfigPath   = "./config/"
	ConfigFile   = ConfigPath + "config.json"
	WalletsFile  = ConfigPath + "wallets.json"
	MintsFile    = ConfigPath + "mints.json"
	PoolsFile    = ConfigPath + "pools.json"
	LogPath      = "./logs/"
	BackendLog   = "backend"
	PoolLog      = "nftpool"
	ServerLog    = "poolserver"
	SettleLog    = "settlement"
)

type Db struct {
	Url    string `json:"url"`
	Scheme string `json:"scheme"`
	User   string `json:"user"`
	Passwd string `json:"passwd"`
}

type Config struct {
	ListenAddr string `json:"listen_addr"`
	Db         *Db    `json:"db"`
	NotifyUrl  string `json:"notify_url"`
	WorkSpace  string `json:"work_space"`
}
