package models

type ConfigFile struct {
	Address           string   `json:"Address" yaml:"address"`
	Port              string   `json:"Port" yaml:"port"`
	TlsCert           string   `json:"TlsCert" yaml:"tlsCert"`
	TlsKey            string   `json:"TlsKey" yaml:"tlsKey"`
	Cors              bool     `json:"Cors" yaml:"cors"`
	CorsOrigins       []string `json:"CorsOrigins" yaml:"corsOrigins"`
	PrintHttpRequests bool     `json:"PrintHttpRequests" yaml:"printHttpRequests"`
	LogToFile         bool     `json:"LogToFile" yaml:"logToFile"`
	LogLevel          string   `json:"LogLevel" yaml:"logLevel"`
	JwtSecret         string   `json:"JwtSecret" yaml:"jwtSecret"`
	SnowflakeWorkerID int64    `json:"SnowflakeWorkerID" yaml:"snowflakeWorkerID"`
	SelfContained     bool     `json:"SelfContained" yaml:"selfContained"`
	SqlitePath        string   `json:"SqlitePath" yaml:"sqlitePath"`
	DbUser            string   `json:"DbUser" yaml:"dbUser"`
	DbPassword        string   `json:"DbPassword" yaml:"dbPassword"`
	DbAddress         string   `json:"DbAddress" yaml:"dbAddress"`
	DbPort            string   `json:"DbPort" yaml:"dbPort"`
	DbDatabase        string   `json:"DbDatabase" yaml:"dbDatabase"`
	RedisAddress      string   `json:"RedisAddress" yaml:"redisAddress"`
	RedisPassword     string   `json:"RedisPassword" yaml:"redisPassword"`
	RedisDB           int      `json:"RedisDB" yaml:"redisDB"`
}
