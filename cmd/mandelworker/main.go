package main

import (
	"flag"
	"os"
	"strings"

	"github.com/ab180/mandelmr"
	"github.com/rs/zerolog/log"
)

func main() {
	opt := mandelmr.DefaultOptions()

	etcd := flag.String("etcd", "127.0.0.1:2379", "comma-separated etcd endpoints")
	flag.StringVar(&opt.EtcdNamespace, "namespace", opt.EtcdNamespace, "etcd key namespace")
	flag.StringVar(&opt.Worker.ListenHost, "listen", opt.Worker.ListenHost, "address to serve on")
	advertised := flag.String("advertise", "", "address the coordinator dials (defaults to -listen)")
	tags := flag.String("tags", "", "comma-separated key=value node tags")
	flag.BoolVar(&opt.Worker.ExperimentalCPUAffinity, "cpu-affinity", false, "pin render computation to a CPU core")
	flag.Parse()

	opt.EtcdEndpoints = splitList(*etcd)
	opt.Worker.AdvertisedHost = opt.Worker.ListenHost
	if *advertised != "" {
		opt.Worker.AdvertisedHost = *advertised
	}
	for _, kv := range splitList(*tags) {
		k, v, _ := strings.Cut(kv, "=")
		opt.Worker.NodeTags[k] = v
	}

	if err := mandelmr.RunWorker(opt); err != nil {
		log.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
}

func splitList(s string) (items []string) {
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return
}
